package sqlinline

const QSelectIntegrationToken = `--sql 06c8e2f4-7a53-49d1-b08e-94f6a1d3c572
select token
from integration_tokens
where provider = $1
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql d7a31b86-5e04-4c2f-a9d8-62b0f4e17c35
insert into integration_tokens (provider, token, properties, updated_at)
values ($1, $2, $3, now())
on conflict (provider)
do update set token = excluded.token, properties = excluded.properties, updated_at = now();
`
